package contracts

const tokenABIJSON = `[
  {"type":"event","name":"Transfer","anonymous":false,"inputs":[
    {"indexed":true,"name":"from","type":"address"},
    {"indexed":true,"name":"to","type":"address"},
    {"indexed":false,"name":"value","type":"tuple","internalType":"struct Ciphertext","components":[{"name":"value","type":"bytes"}]}
  ]},
  {"type":"event","name":"Approval","anonymous":false,"inputs":[
    {"indexed":true,"name":"owner","type":"address"},
    {"indexed":true,"name":"spender","type":"address"},
    {"indexed":false,"name":"value","type":"tuple","internalType":"struct Ciphertext","components":[{"name":"value","type":"bytes"}]}
  ]},
  {"type":"function","name":"balanceOf","stateMutability":"view",
    "inputs":[{"name":"","type":"address"}],
    "outputs":[{"name":"value","type":"bytes"}]},
  {"type":"function","name":"totalSupply","stateMutability":"view",
    "inputs":[],
    "outputs":[{"name":"value","type":"bytes"}]},
  {"type":"function","name":"transfer","stateMutability":"nonpayable",
    "inputs":[
      {"name":"recipient","type":"address"},
      {"name":"amount","type":"tuple","internalType":"struct Ciphertext","components":[{"name":"value","type":"bytes"}]}
    ],
    "outputs":[{"name":"success","type":"bool"}]},
  {"type":"function","name":"name","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
  {"type":"function","name":"symbol","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
  {"type":"function","name":"decimals","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]}
]`

const factoryABIJSON = `[
  {"type":"event","name":"TokenCreated","anonymous":false,"inputs":[
    {"indexed":true,"name":"tokenAddress","type":"address"},
    {"indexed":false,"name":"name","type":"string"},
    {"indexed":false,"name":"symbol","type":"string"},
    {"indexed":false,"name":"decimals","type":"uint8"}
  ]},
  {"type":"function","name":"getTokensCount","stateMutability":"view","inputs":[],"outputs":[{"name":"count","type":"uint256"}]},
  {"type":"function","name":"getToken","stateMutability":"view",
    "inputs":[{"name":"index","type":"uint256"}],
    "outputs":[{"name":"tokenAddress","type":"address"}]},
  {"type":"function","name":"isDiscreteERC20Token","stateMutability":"view",
    "inputs":[{"name":"","type":"address"}],
    "outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"createDiscreteERC20","stateMutability":"nonpayable",
    "inputs":[
      {"name":"_name","type":"string"},
      {"name":"_symbol","type":"string"},
      {"name":"_decimals","type":"uint8"},
      {"name":"_initialSupply","type":"tuple","internalType":"struct Ciphertext","components":[{"name":"value","type":"bytes"}]},
      {"name":"_paillier","type":"address"},
      {"name":"_publicKey","type":"tuple","internalType":"struct PublicKey","components":[{"name":"n","type":"bytes"},{"name":"g","type":"bytes"}]}
    ],
    "outputs":[{"name":"tokenAddress","type":"address"}]}
]`
